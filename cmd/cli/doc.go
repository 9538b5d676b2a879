// Package cli wires the ghpr command tree: the Cobra root command with its
// configuration and logging flags, the pull request commands, and the config
// inspection and initialization entry points.
package cli
