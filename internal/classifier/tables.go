package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is a named group of case-insensitive substrings.
type Category struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Tables is the keyword configuration consulted by the classifier. Noise entries
// are kept to precise, well-known benign phrases; the suspicious side is broad.
type Tables struct {
	Version    string     `yaml:"version"`
	Noise      []Category `yaml:"noise"`
	Suspicious []Category `yaml:"suspicious"`
}

func DefaultTables() Tables {
	return Tables{
		Version: "2024.1",
		Noise: []Category{
			{Name: "service_lifecycle", Patterns: []string{
				"systemd[1]: started",
				"systemd[1]: starting",
				"systemd[1]: stopped",
				"systemd[1]: stopping",
				"reached target",
				"systemd-logind",
				"new session",
				"removed session",
			}},
			{Name: "auth_success", Patterns: []string{
				"accepted publickey for",
				"session opened for user",
				"session closed for user",
				"pam_unix(sudo:session)",
			}},
			{Name: "crawler", Patterns: []string{
				"googlebot",
				"bingbot",
				"get /robots.txt",
				"get /favicon.ico",
				"get /health",
			}},
		},
		Suspicious: []Category{
			{Name: "web_attack", Patterns: []string{
				"union select",
				"or 1=1",
				"' or '1'='1",
				"select * from",
				"drop table",
				"xp_cmdshell",
				"<script",
				"%3cscript",
				"javascript:",
				"onerror=",
				"../",
				"..%2f",
				"/etc/passwd",
				"/etc/shadow",
				"${jndi:",
				"base64_decode",
				"eval(",
				"wp-login.php",
				"phpmyadmin",
				"cmd.exe",
			}},
			{Name: "auth_failure", Patterns: []string{
				"failed password",
				"authentication failure",
				"invalid user",
				"failed login",
				"login failed",
				"access denied",
				"permission denied",
				"unauthorized",
				"too many authentication failures",
				"maximum authentication attempts",
				"possible break-in attempt",
				"account locked",
			}},
			{Name: "post_exploitation", Patterns: []string{
				"wget http",
				"curl http",
				"chmod +x",
				"chmod 777",
				"/bin/sh",
				"bash -i",
				"/dev/tcp/",
				"nc -e",
				"ncat ",
				"useradd",
				"sudo su",
				"base64 -d",
				"python -c",
				"powershell -enc",
				"mimikatz",
				"whoami",
			}},
			{Name: "reconnaissance", Patterns: []string{
				"nmap",
				"masscan",
				"nikto",
				"sqlmap",
				"dirbuster",
				"gobuster",
				"hydra",
				"zgrab",
				"nessus",
				"wpscan",
				"port scan",
			}},
		},
	}
}

// LoadTables reads a YAML keyword file. Patterns are lower-cased on load.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read keyword tables %s: %w", path, err)
	}
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parse keyword tables %s: %w", path, err)
	}
	if len(t.Noise) == 0 && len(t.Suspicious) == 0 {
		return Tables{}, fmt.Errorf("keyword tables %s define no categories", path)
	}
	return t, nil
}

type flatPattern struct {
	category string
	pattern  string
}

func flatten(categories []Category) []flatPattern {
	var out []flatPattern
	for _, c := range categories {
		for _, p := range c.Patterns {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" {
				continue
			}
			out = append(out, flatPattern{category: c.Name, pattern: p})
		}
	}
	return out
}
