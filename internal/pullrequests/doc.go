// Package pullrequests runs the pull request workflows: publishing the current
// work as a new pull request, and listing, viewing or checking out open ones.
//
// Service orchestrates the repository inspector, the GitHub API client and the
// interaction surface; CommandBuilder exposes the workflows as Cobra commands.
package pullrequests
