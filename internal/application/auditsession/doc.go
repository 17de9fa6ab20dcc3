// Package auditsession is the operator-side audit engine. It folds decoded scans
// into an in-memory session, resolves codes and writes each found asset to the
// durable store exactly once, and keeps a live reconciliation until the audit is
// completed.
//
// All shared state lives in a Store. The Ingestor, Synchronizer and Engine are the
// only writers; everything else reads Snapshots or subscribes to changes. Every
// asynchronous result carries the Token of the session that started it and is
// dropped if the session was restarted or ended in the meantime.
package auditsession
