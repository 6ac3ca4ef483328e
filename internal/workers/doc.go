/*
Package workers determines the transcoding concurrency budget in
containerized environments.

When running in a container, the number of available CPUs may be limited
by cgroup constraints. Go 1.19+ sets GOMAXPROCS from the container CPU
limit, while runtime.NumCPU() still reports the host machine. This
package sizes the budget from GOMAXPROCS so the service respects its
actual allocation.

The consumer is the compilation orchestrator, which bounds the number of
jobs transcoding concurrently across the process. ffmpeg is itself
multi-threaded, so the budget is deliberately conservative: ForTranscode
reserves one core for the HTTP surface and caps the result regardless of
machine size.

The COMPILE_WORKERS environment variable overrides the automatic
calculation:

	env:
	- name: COMPILE_WORKERS
	  value: "2"

ForTranscode is safe for concurrent use.
*/
package workers
