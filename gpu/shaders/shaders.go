// Package shaders embeds the WGSL kernel sources.
package shaders

import (
	_ "embed"
)

//go:embed integrate.wgsl
var IntegrateWGSL string

//go:embed sort_chunks.wgsl
var SortChunksWGSL string

//go:embed shuffle.wgsl
var ShuffleWGSL string

//go:embed identity.wgsl
var IdentityWGSL string

//go:embed csr.wgsl
var CSRWGSL string

//go:embed scan.wgsl
var ScanWGSL string

//go:embed coarse.wgsl
var CoarseWGSL string

//go:embed relocate.wgsl
var RelocateWGSL string
