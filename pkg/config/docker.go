package config

import (
	"os"
	"strings"
	"sync"
)

// DockerHostGateway is the name under which Docker exposes the host machine.
const DockerHostGateway = "host.docker.internal"

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

var inDocker = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// IsRunningInDocker reports whether /.dockerenv exists. The answer is cached.
func IsRunningInDocker() bool {
	return inDocker()
}

// ResolveHostForDocker points loopback datasource hosts at the Docker host
// when the engine runs in a container, so a database on the developer's
// machine stays reachable. It is the connector factory's ResolveHost hook.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, dockerized bool) string {
	if dockerized && loopbackHosts[strings.ToLower(strings.TrimSpace(host))] {
		return DockerHostGateway
	}
	return host
}
