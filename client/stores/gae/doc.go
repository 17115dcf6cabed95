//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of
// client.Storage, for deployments where the dashboard runs on Google Cloud
// and sessions must outlive a single instance.
//
// # Datastore Kinds
//
//   - ClientSession: one entity per (server, key), named "<server>|<key>"
//
// # Namespacing
//
// Pass a namespace to isolate sessions between tenants:
//
//	storage := gae.NewStorage(dsClient, "ward-7", "https://ward.example.com")
package gae
