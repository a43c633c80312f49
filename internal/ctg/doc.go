// Package ctg provides shared types for the CTG screening platform.
//
// This package contains:
//   - The fixed, ordered set of 22 cardiotocography features
//   - Request/response schemas for the prediction service
//   - Error, health and readiness response formats shared by the HTTP services
package ctg

// Version of the ctg package
const Version = "0.1.0"
