// Package fx provides currency conversion and a cached FX rate provider
package fx

import (
	"strings"

	"github.com/dstanton/folio/internal/models"
)

// Convert converts an amount between two ISO currency codes using a rate
// table. It never fails: when the conversion cannot be resolved the amount
// is returned unchanged, so callers degrade to unconverted values rather
// than erroring.
//
// Resolution order:
//  1. same currency or empty table — no-op
//  2. both rates present and rate[from] != 0 — ratio form, correct
//     regardless of which currency the table was fetched for
//  3. rate[to] == 1 — treat "to" as the implicit base, divide
//  4. rate[from] == 1 — treat "from" as the implicit base, multiply
//  5. otherwise — no-op
func Convert(amount float64, from, to string, rates models.RateTable) float64 {
	if len(rates) == 0 {
		return amount
	}

	upperFrom := strings.ToUpper(from)
	upperTo := strings.ToUpper(to)
	if upperFrom == upperTo {
		return amount
	}

	rateFrom, hasFrom := rates.Lookup(upperFrom)
	rateTo, hasTo := rates.Lookup(upperTo)

	if hasFrom && hasTo && rateFrom != 0 {
		return amount * (rateTo / rateFrom)
	}

	if hasTo && rateTo == 1 && hasFrom && rateFrom != 0 {
		return amount / rateFrom
	}
	if hasFrom && rateFrom == 1 && hasTo {
		return amount * rateTo
	}

	return amount
}
