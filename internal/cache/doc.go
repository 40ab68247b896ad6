// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package cache provides a small generic LRU cache.
//
//	c := cache.NewLRU[string, []byte](64)
//	c.Put("key", data)
//	data, ok := c.Get("key")
//
// LRU is safe for concurrent use and must not be copied after creation.
package cache
