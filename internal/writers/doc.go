// Package writers turns result rows into serialized outputs.
//
// Design:
//   - Writers own all presentation knowledge (TSV/CSV/JSON/JSONL).
//   - Analysis packages stay domain-only; they hand rows to a writer channel.
//   - JSON/JSONL go through pkg/api (v1) for a stable wire format.
package writers
