// Package weightd is a mock weight oracle daemon for integration tests.
//
// The daemon accepts TCP connections on 127.0.0.1 and serves exactly one JSON
// request per connection:
//
//	{"type":"ping"}
//	{"type":"identity"}
//	{"type":"weight","address":"...","selection_id":"...","balance_round":"..."}
//	{"type":"total_weight","balance_round":"...","vote_round":"..."}
//
// It replies with one JSON object followed by a newline and closes the
// connection. Weights are decimal strings. Errors are reported as
// {"error":"...","code":"..."} with code bad_request or unsupported; not_found
// and internal are reserved.
//
// Weight queries resolve in order: Config.DefaultWeight, the address table,
// the "address:selection_id:balance_round" table, and finally the sum of the
// address's code points modulo 1000000. The tables and the total weight can be
// changed while the daemon runs:
//
//	srv := weightd.NewServer(weightd.Config{TotalWeight: 1000000})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//	srv.SetAddressWeight("ADDR", 1000000)
//
//	c := weightd.NewClient(srv.Addr().String())
//	w, err := c.Weight(ctx, "ADDR", "sel", "5")
package weightd
