//go:build !wasm
// +build !wasm

// Package gae provides Google Cloud Datastore implementations of the recipeauth
// stores. It supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
//   - Profile: per-account profile documents with saved and derived items
//   - Account: credential records used by identity.LocalClient
//   - AccountEmail: email to account id index, keyed by lowercased email
//   - AuthToken: verification and password reset tokens
//
// # Usage
//
//	client, _ := gae.NewClient(ctx, projectID, "")
//	profiles := gae.NewProfileStore(client, "")  // default namespace
//	accounts := gae.NewAccountStore(client, "")
//
// Point emulatorHost (or DATASTORE_EMULATOR_HOST) at a local emulator for
// development.
package gae
