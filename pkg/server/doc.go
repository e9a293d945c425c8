// Package server exposes the statistics store over a local HTTP API.
package server
