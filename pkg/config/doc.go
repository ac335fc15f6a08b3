// Package config loads cibcore settings from an optional YAML file and the
// environment. Environment variables win over the file, and command-line
// flags of the binaries win over both.
//
//	schema_dir: /usr/share/pacemaker
//	remote_schema_dir: /var/lib/pacemaker/schemas
//	data_dir: /var/lib/cibcore
//	log:
//	  level: debug
//	  json: true
//	resolver:
//	  inactive_changes: false
//	server:
//	  listen_addr: 127.0.0.1:9190
//
// PCMK_schema_directory and PCMK_remote_schema_directory keep the names the
// cluster stack already uses for the two schema directories.
package config
