// Package config loads and validates the feedback daemon configuration.
//
// This package manages:
//   - Loading configuration from a YAML file
//   - Overriding with FEEDBACK_* environment variables
//   - Structural validation of controllers and toys
//   - Default value handling
//
// Numeric backend settings outside their documented range are not rejected
// here; each backend clamps them to its default and logs a warning. Only
// structural problems (missing names, unknown types, dangling references)
// fail loading, and all of them are reported together.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Cabinet.Name)
package config
