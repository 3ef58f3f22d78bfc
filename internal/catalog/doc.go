// Package catalog is the reference related-articles service.
//
// Articles are loaded from a YAML or JSON file into the SQLite repository.
// Each carries precomputed future and past related keys. The Service answers
// with the same cleaned display records and tagged statuses a remote
// expansion source returns, so it can back a session in-process (it
// satisfies expansion.Fetcher and session.Seeder) or be served over HTTP
// by Handler for remote.Client.
//
// # Endpoints
//
//   - POST /catalog/related       {"external_key", "direction"} -> {status, data}
//   - GET  /catalog/articles/{key} single cleaned article, date_difference "NA"
//   - GET  /catalog/random        random seed suggestions (?year=&n=)
//
// Status 1 carries data, status -1 means there is nothing further.
package catalog
