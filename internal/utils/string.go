package utils

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint returns a stable digest of a set of strings, independent of
// their order or duplicates.
func Fingerprint(items []string) string {
	sorted := UniqueStringSlice(items)
	sort.Strings(sorted)
	return fmt.Sprintf("%x", md5.Sum([]byte(strings.Join(sorted, "\x00"))))
}

// UniqueStringSlice removes duplicates keeping first occurrence order
func UniqueStringSlice(slice []string) []string {
	uniqueSlice := make([]string, 0, len(slice))
	uniqueMap := make(map[string]struct{})
	for _, str := range slice {
		if _, ok := uniqueMap[str]; !ok {
			uniqueMap[str] = struct{}{}
			uniqueSlice = append(uniqueSlice, str)
		}
	}
	return uniqueSlice
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
