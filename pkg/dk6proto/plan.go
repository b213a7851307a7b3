// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 ximing766

package dk6proto

// TransferConfig carries the tunable chunking parameter for PROGRAM frames.
// A zero value is usable and means DefaultPagesPerTransfer.
type TransferConfig struct {
	// PagesPerTransfer is how many 256-byte pages each PROGRAM frame
	// carries, between MinPagesPerTransfer and MaxPagesPerTransfer.
	PagesPerTransfer int
}

// normalized clamps the config into the supported range.
func (c TransferConfig) normalized() TransferConfig {
	if c.PagesPerTransfer < MinPagesPerTransfer {
		c.PagesPerTransfer = DefaultPagesPerTransfer
	}
	if c.PagesPerTransfer > MaxPagesPerTransfer {
		c.PagesPerTransfer = MaxPagesPerTransfer
	}
	return c
}

// TransferSize returns the chunk size in bytes.
func (c TransferConfig) TransferSize() int {
	return c.normalized().PagesPerTransfer * PageSize
}

// TransferPlan describes the erase/program work for one firmware image.
type TransferPlan struct {
	BlocksToErase   int
	PagesToProgram  int
	TransfersNeeded int
	TransferSize    int
}

// BlocksToErase returns how many 64 KiB blocks cover totalLen bytes.
func BlocksToErase(totalLen int) int {
	return (totalLen + BlockSize - 1) / BlockSize
}

// PagesToProgram returns how many 256-byte pages cover totalLen bytes.
func PagesToProgram(totalLen int) int {
	return (totalLen + PageSize - 1) / PageSize
}

// TransfersNeeded returns how many PROGRAM frames carry pages pages.
func TransfersNeeded(pages, pagesPerTransfer int) int {
	return (pages + pagesPerTransfer - 1) / pagesPerTransfer
}

// PlanTransfer computes the full plan for an image of totalLen bytes.
func PlanTransfer(totalLen int, cfg TransferConfig) TransferPlan {
	cfg = cfg.normalized()
	pages := PagesToProgram(totalLen)
	return TransferPlan{
		BlocksToErase:   BlocksToErase(totalLen),
		PagesToProgram:  pages,
		TransfersNeeded: TransfersNeeded(pages, cfg.PagesPerTransfer),
		TransferSize:    cfg.TransferSize(),
	}
}

// Chunk returns the flash offset and data for transfer index i of image.
// The final chunk is padded with 0xFF, the erased-flash value, up to a full
// transfer size. The returned slice aliases image except when padded.
func (p TransferPlan) Chunk(image []byte, i int) (offset uint32, data []byte) {
	offset = uint32(i * p.TransferSize)
	end := int(offset) + p.TransferSize
	if end <= len(image) {
		return offset, image[offset:end]
	}

	data = make([]byte, p.TransferSize)
	n := copy(data, image[offset:])
	for j := n; j < len(data); j++ {
		data[j] = 0xFF
	}
	return offset, data
}
