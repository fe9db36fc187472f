// Package config loads coordinator configuration.
//
// Config is a loose accessor over a decoded YAML or JSON document;
// Settings is the typed view the coordinator and the built-in handlers
// consume.
//
// # Loading
//
//	settings, err := config.LoadSettings("/etc/remusbuf.yaml")
//	if err != nil {
//	    return err
//	}
//
// # File format
//
//	script_dir: /etc/xen/scripts
//	hotplug_timeout: 40s
//	netbuffer: true
//	diskbuffer: true
//	netbuffer_supported: true
//	max_concurrency: 8
//	journal_path: /var/lib/remusbuf/journal.db
//
// Absent keys take the values from DefaultSettings.
package config
