// Package config provides configuration parsing for the trackstate host.
//
// The configuration is stored in trackstate.json next to the hosted
// document. This package handles loading, saving, and validating it.
//
// # Configuration File Structure
//
//	{
//	  "name": "settings",
//	  "document": "./settings.yaml",
//	  "server": {
//	    "host": "0.0.0.0",
//	    "port": 7070,
//	    "allowedOrigins": ["https://app.example.com"],
//	    "pingInterval": "30s"
//	  },
//	  "log": {
//	    "level": "debug",
//	    "format": "json"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "settings"
//	  },
//	  "tracing": {
//	    "enabled": true
//	  },
//	  "s3": {
//	    "region": "eu-west-1"
//	  }
//	}
//
// A relative document path is resolved against the directory of the
// configuration file.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Listening on", cfg.Address())
package config
