// Package config loads and watches the gpustatsd service configuration.
package config
