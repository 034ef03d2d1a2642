package service

import "strings"

// technicalTerms classifies queries as programming/CS-related. Classification
// only changes source priority; both sources are always queried.
var technicalTerms = []string{
	"python", "java", "javascript", "typescript", "golang", " go ",
	"rust", "c++", "c#", "kotlin", "swift", "ruby", "php", "scala",
	"programming", "coding", "software", "algorithm", "data structure",
	"database", "sql", "machine learning", "deep learning", "neural",
	"computer science", "operating system", "compiler", "network",
	"security", "cryptography", "web development", "devops", "cloud",
	"docker", "kubernetes", "linux", "api design", "microservice",
	"distributed system", "concurrency", "refactoring",
}

func isTechnical(query string) bool {
	// Pad so the " go " term can match at the edges of the query.
	padded := " " + strings.ToLower(query) + " "
	for _, term := range technicalTerms {
		if strings.Contains(padded, term) {
			return true
		}
	}
	return false
}
