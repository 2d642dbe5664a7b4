// Package config loads the hashhist project configuration.
//
// The configuration lives in hashhistory.json, hashhistory.toml or
// hashhistory.yaml at the project root; the decoder is chosen by extension.
// All three carry the same fields:
//
//	{
//	  "queryKey": "_k",
//	  "hashType": "slash",
//	  "coderScript": "",
//	  "stateApi": "auto",
//	  "storage": {
//	    "backend": "s3",
//	    "prefix": "@@History/",
//	    "ttl": "24h",
//	    "s3": {
//	      "bucket": "my-app-history",
//	      "region": "us-east-1",
//	      "endpoint": "http://localhost:9000",
//	      "keyPrefix": "hashhistory/",
//	      "usePathStyle": true
//	    }
//	  },
//	  "server": {"addr": ":8080", "wsPath": "/ws", "metrics": true},
//	  "metrics": {"namespace": "hashhistory"},
//	  "logLevel": "info"
//	}
//
// HASHHISTORY_QUERY_KEY, HASHHISTORY_ADDR and HASHHISTORY_S3_BUCKET override
// the corresponding fields after the file is read. Setting a bucket through
// the environment also switches a memory backend to s3.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Listening on", cfg.Server.Addr)
package config
