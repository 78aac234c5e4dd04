// Package harness runs contract scenarios against an HTTP API and a browser
// UI.
//
// # Scenario Format
//
// Scenarios are declared in YAML (or CUE compiled to the same structure):
//
//	name: get single user
//	description: "GET /api/users/2 returns Janet"
//	tags: [api, users]
//	timeout: 10s
//	steps:
//	  - call:
//	      method: GET
//	      endpoint: singleUser
//	      params: [2]
//	    expect:
//	      status: 200
//	      item:
//	        at: data
//	        shape:
//	          email: janet.weaver@reqres.in
//	          id: {$type: number}
//	  - flow: standard
//	    user: standard
//	    expect:
//	      terminal: success
//
// A step is either an endpoint call or a UI flow run, never both.
//
// # Call expectations
//
//   - status: exact code; the transport's ok flag must agree with the 2xx class
//   - within: {delay, tolerance} bounds the round trip to [delay, delay+tolerance]
//   - body: shape checked against the whole decoded document
//   - item: {at, shape} selects one value by dotted path and checks its shape
//   - items: {at, min_length, first} checks a collection and its first element
//
// # Flow expectations
//
//   - terminal: success or expected_failure
//   - final: name of the state the flow must end in
//   - signal: timeout, completed or any, for actions declared allow_timeout
//
// # Isolation
//
// Every scenario acquires its own Session (HTTP client with a private cookie
// jar, its own browser page) and releases it when done. Scenarios share no
// mutable state, so RunAll may execute them concurrently.
package harness
