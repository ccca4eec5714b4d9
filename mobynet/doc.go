/*
Package mobynet discovers the perspective of a Docker container onto its
networks: the network namespace to probe from, and the other containers
attached to the same networks together with their IPv4 addresses.

This allows probing container peers from exactly the network position of a
particular container, without needing any tooling inside that container.
*/
package mobynet
