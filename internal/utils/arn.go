package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxPathLength is the longest IAM path the provider accepts.
const MaxPathLength = 512

var pathPattern = regexp.MustCompile(`^/([\w/]*/)?$`)

// awsManagedPrefix is the ARN prefix of policies owned by AWS rather than
// the account.
const awsManagedPrefix = "arn:aws:iam::aws:policy/"

// ShortName extracts the last segment after "/" from an ARN or path.
// Returns the input unchanged if no "/" is found.
func ShortName(arn string) string {
	if parts := strings.Split(arn, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return arn
}

// IsAWSManaged reports whether a managed policy ARN belongs to AWS.
func IsAWSManaged(policyARN string) bool {
	return strings.HasPrefix(policyARN, awsManagedPrefix)
}

// CheckPath reports why an IAM path is malformed. A path starts and ends
// with "/" and holds only letters, digits, underscores and slashes.
func CheckPath(path string) error {
	switch {
	case len(path) > MaxPathLength:
		return fmt.Errorf("path is longer than %d characters", MaxPathLength)
	case !pathPattern.MatchString(path):
		return fmt.Errorf("path %q must start and end with '/' and contain only letters, digits, '_' and '/'", path)
	}
	return nil
}
