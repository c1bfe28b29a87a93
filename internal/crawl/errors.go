package crawl

import "fmt"

// ConfigurationError reports crawl options that cannot work. It is returned
// before any metadata is retrieved.
type ConfigurationError struct {
	Category Category
	Msg      string
}

func (e *ConfigurationError) Error() string {
	if e.Category == "" {
		return "crawl configuration: " + e.Msg
	}
	return fmt.Sprintf("crawl configuration: %s: %s", e.Category, e.Msg)
}

// RetrievalError reports a failed retrieval step. The crawl is abandoned and
// no catalog is returned.
type RetrievalError struct {
	Category Category
	Strategy Strategy
	Err      error
}

func (e *RetrievalError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("retrieve %s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("retrieve %s (%s): %v", e.Category, e.Strategy, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
