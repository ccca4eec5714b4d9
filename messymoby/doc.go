/*
Package messymoby helps with bringing up and tearing down a Docker compose
test harness of containers and networks, cleaning up after messy test runs
that left stopped containers or duplicate networks behind.

All harness elements carry the [Label] so that cleaning up never touches
unrelated containers and networks.

As the helpers here are meant to be used only in Ginkgo test suites, they
fail the current spec instead of returning errors.
*/
package messymoby
