// Package gitrepo inspects and mutates a local Git repository for the pull request workflow.
//
// RepositoryManager reads working tree status, the latest commit subject and
// remote configuration, and performs the branch, stage, commit, push and fetch
// operations the workflow needs. ParseRepositoryURL turns remote URLs into
// RemoteDescriptor values.
package gitrepo
