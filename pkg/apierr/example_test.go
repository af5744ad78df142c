package apierr_test

import (
	"errors"
	"fmt"
	"net/http"

	"hackmd-go/pkg/apierr"
)

// Example_kindOf shows exhaustive handling of client errors.
func Example_kindOf() {
	err := fmt.Errorf("load note: %w", apierr.FromStatus(http.StatusNotFound, nil))

	switch apierr.KindOf(err) {
	case apierr.KindNotFound:
		fmt.Println("note is gone")
	case apierr.KindRateLimited:
		fmt.Println("slow down")
	default:
		fmt.Println("other:", err)
	}
	fmt.Println(errors.Is(err, apierr.ErrNotFound))

	// Output:
	// note is gone
	// true
}
