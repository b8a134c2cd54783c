// Package prsync keeps translated localization files of pull requests in
// sync with their source-string document.
// For every relevant webhook event it resolves the repository configuration,
// diffs the source document between the pull request's base and head
// revisions, translates the changed keys and appends the translated locale
// files as a new commit on the pull-request branch. Progress is reported
// through a pending/success/failure commit status on the head revision.
package prsync
