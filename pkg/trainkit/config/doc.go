/*
Package config loads and validates trainkit run settings.

# Overview

Settings groups the checkpoint store and plateau detector parameters of a
training run. Files are decoded on top of Default(), so only the keys that
differ need to be written, and the result is validated before it is
returned.

# File Loading

	cfg, err := config.FromFile("train.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

A typical YAML file:

	checkpoint:
	  dir: ./checkpoints
	  save_every: 5
	  resume: epoch:40
	plateau:
	  patience: 3
	  minimum_rate: 0.00001
	  schedule:
	    kind: step
	    initial: 0.1
	    factor: 0.5
	    every: 2

# Validation

Invalid values are reported as *errors.ConfigError naming the dotted
field, e.g. "checkpoint.save_every". Unknown keys are rejected.
*/
package config
