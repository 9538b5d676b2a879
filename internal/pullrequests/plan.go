package pullrequests

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/temirov/ghpr/internal/gitrepo"
)

// MutationStep names one git operation performed before a pull request is opened.
type MutationStep string

// Mutation steps in the order they may appear in a plan.
const (
	StepCreateBranch MutationStep = "create_branch"
	StepStageAll     MutationStep = "stage_all"
	StepCommit       MutationStep = "commit"
	StepPush         MutationStep = "push"
)

const (
	branchRequiredMessageConstant        = "Branch name must be provided."
	branchContainsSpacesMessageConstant  = "Branch name must not contain spaces."
	branchIsTargetTemplateConstant       = "Branch name cannot be the default branch name (%s)."
	commitMessageRequiredMessageConstant = "Commit message must be provided."
)

// ValidationError reports user input that was rejected before any mutation.
type ValidationError struct {
	Message string
}

// Error returns the validation message.
func (validationError ValidationError) Error() string {
	return validationError.Message
}

// PlanMutations selects the git operations needed to publish branchName.
//
// A new branch is created when the user is on the target branch or names a branch other than the
// current one; local changes are staged and committed only when the working tree is dirty.
func PlanMutations(status gitrepo.RepositoryStatus, branchName string) []MutationStep {
	steps := make([]MutationStep, 0, 4)
	if status.OnTargetBranch || status.CurrentBranch != branchName {
		steps = append(steps, StepCreateBranch)
	}
	if !status.Clean {
		steps = append(steps, StepStageAll, StepCommit)
	}
	return append(steps, StepPush)
}

// ValidateBranchName rejects empty names, names containing whitespace, and the target branch itself.
func ValidateBranchName(branchName string, targetBranch string) error {
	if len(branchName) == 0 {
		return ValidationError{Message: branchRequiredMessageConstant}
	}
	if strings.IndexFunc(branchName, unicode.IsSpace) >= 0 {
		return ValidationError{Message: branchContainsSpacesMessageConstant}
	}
	if branchName == targetBranch {
		return ValidationError{Message: fmt.Sprintf(branchIsTargetTemplateConstant, targetBranch)}
	}
	return nil
}

// ValidateCommitMessage rejects blank commit messages.
func ValidateCommitMessage(commitMessage string) error {
	if len(strings.TrimSpace(commitMessage)) == 0 {
		return ValidationError{Message: commitMessageRequiredMessageConstant}
	}
	return nil
}
