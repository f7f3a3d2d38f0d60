// Package core runs documents through the normalization pipeline.
//
// The package wires the pipeline components and is independent of any
// transport, so the HTTP server, the CLI and tests share one code path.
//
// # Pipeline
//
// [Service.Process] handles one document per call:
//
//  1. Classify the document text into a doc type and vendor
//  2. Obtain the raw extraction through the configured [Extractor]
//  3. Map the extraction onto the canonical document
//  4. Validate the document and resolve vendor and customer entities
//  5. Store the document (successful runs only) and save run artifacts
//
// Stages 1 to 3 are fatal when they fail: the run stops and the report
// carries an explicit error. Validation failures are not fatal; the document
// is returned together with its errors.
//
// # Concurrency
//
// A Service is safe for concurrent use. Hosts bound parallel runs with a
// [Limiter].
//
// # Error Handling
//
// Stage errors are sentinel values ([ErrClassification], [ErrExtraction],
// [ErrMapping], [ErrValidation]) wrapped into [Result.Err]. [MapError] turns
// any error into a user-facing message with a support code:
//
//   - CLS, EXT, MAP, VAL: pipeline stages
//   - CFG001-CFG002: configuration tree
//   - DB001-DB005: document store
//   - REQ001-REQ006: request handling
package core
