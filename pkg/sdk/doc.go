// Package roadsafe embeds the road-safety intervention search and decision
// engines in a Go program, without the HTTP server.
//
// The client loads an intervention catalog once, then answers hybrid
// searches (vector + structured, fused with reciprocal rank fusion) and
// turns search hits into budget plans and side-by-side comparisons.
//
//	client, _ := roadsafe.New(ctx,
//	    roadsafe.WithCatalogFile("data/interventions.json"),
//	    roadsafe.WithEmbedder(myEmbedder),
//	)
//	defer client.Close()
//
//	res, _ := client.NewSearch().
//	    Text("faded zebra crossing near school").
//	    Category("Road Marking").
//	    Limit(5).
//	    Do(ctx)
//
//	plan, _ := client.PlanBudget(ctx, res.Refs(), 250000, true)
//	cmp, _ := client.Compare(ctx, res.Refs()[:2])
//
// Without an embedder only the structured strategy runs, so queries need at
// least one filter.
package roadsafe
