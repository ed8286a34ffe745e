// Package knowledge is the public entry point to the knowledge engine.
//
// A [Service] ties together a document repository, the term indexer, the
// ingestion pipeline, and the search engine:
//
//	svc, err := knowledge.Open(knowledge.OptionsFromConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	doc, chunks, err := svc.Ingest(ctx, "Runbook", "manual", []string{"ops"}, text, nil, nil)
//	hits, err := svc.Search(ctx, "restart database", 10, "ops")
//
// Lookups that miss return (nil, nil) and searches without matches return
// an empty slice. Errors are reserved for storage and index failures and
// carry codes from internal/errors.
package knowledge
