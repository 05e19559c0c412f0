// Package audit implements the forensic order-history audit engine: SKU
// resolution, order normalization, and episode-sequence reconstruction.
//
// Everything in this package is deterministic and side-effect free. The
// normalizer reports unmapped purchases through an injected sink callback;
// persistence, rate limiting, and the resolution workflow live elsewhere.
package audit
