package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostEntry is a concrete Host alias from an ssh_config file.
type HostEntry struct {
	Alias    string
	Hostname string
	User     string
	Port     string
}

// Description summarizes the entry for pickers, e.g. "10.0.0.5, user: ops".
func (h HostEntry) Description() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != "" && h.Port != "22" {
		parts = append(parts, "port: "+h.Port)
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// ListHosts returns the non-wildcard aliases in path, sorted. An empty path
// reads ~/.ssh/config. A missing file yields no hosts and no error.
func ListHosts(path string) ([]HostEntry, error) {
	if path == "" {
		path = filepath.Join(homeDir(), ".ssh", "config")
	}
	content, _, err := stripMatchBlocks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var hosts []HostEntry
	for _, h := range cfg.Hosts {
		for _, p := range h.Patterns {
			alias := p.String()
			if strings.ContainsAny(alias, "*?") || seen[alias] {
				continue
			}
			seen[alias] = true

			e := HostEntry{Alias: alias}
			e.Hostname, _ = cfg.Get(alias, "HostName")
			e.User, _ = cfg.Get(alias, "User")
			e.Port, _ = cfg.Get(alias, "Port")
			hosts = append(hosts, e)
		}
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Alias < hosts[j].Alias })
	return hosts, nil
}
