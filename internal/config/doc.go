// Package config holds the engine configuration model: worker counts,
// parser and expansion limits, conversion strictness, and the ambient
// project/stack identity. The model is threaded explicitly into every
// pipeline stage; there is no package-level state.
package config
