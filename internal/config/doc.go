// Package config provides the gateway configuration model, loading,
// validation and hot reload.
//
// A configuration document carries the listener and upstream settings,
// a default transformation policy and per-route policy overrides:
//
//	apiVersion: gateway.avaform.io/v1
//	kind: Gateway
//	spec:
//	  upstream:
//	    url: http://backend:8080
//	  transformation:
//	    request:
//	      set:
//	        - name: x-tenant
//	          value: '{{ header("x-tenant") | lower }}'
//	  routes:
//	    - name: orders
//	      pathPrefix: /orders
//	      transformation:
//	        response:
//	          remove: [server]
//
// ${VAR} and ${VAR:-default} are substituted from the environment before
// parsing. Write "$$" for a literal dollar sign.
//
// ValidateConfig compiles every policy, so a configuration that validates
// will not fail template compilation when applied. Watcher reloads the file
// on change and only hands validated configurations to its ApplyFunc.
package config
