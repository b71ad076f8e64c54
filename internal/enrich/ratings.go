package enrich

import (
	"strconv"
	"strings"

	"jellydiscord/internal/model"
)

// unifyRatings flattens every provider's raw rating values into a single
// {source -> rating} map per spec.md §4.D's unification rules. A provider
// that already computed Normalized010 (because its source format is
// ambiguous to re-derive, e.g. Metacritic's bare /100 score) is trusted
// as-is; otherwise the raw Value string is parsed.
func unifyRatings(bundle model.Bundle) map[string]model.Rating {
	unified := make(map[string]model.Rating)
	addProviderRatings(unified, bundle.OMDB)
	addProviderRatings(unified, bundle.TMDB)
	addProviderRatings(unified, bundle.TVDB)
	if len(unified) == 0 {
		return nil
	}
	return unified
}

func addProviderRatings(unified map[string]model.Rating, result *model.ProviderResult) {
	if result == nil {
		return
	}
	for _, rating := range result.Ratings {
		normalized := rating.Normalized010
		if normalized == 0 {
			if parsed, ok := normalizeRatingValue(rating.Value); ok {
				normalized = parsed
			}
		}
		rating.Normalized010 = normalized
		key := rating.Source
		if key == "" {
			key = "rating"
		}
		unified[key] = rating
	}
}

// normalizeRatingValue converts a raw provider rating string to a 0-10
// scale per spec.md §4.D: "/10" as given, "%" divided by 10, "/100" divided
// by 10, and general "x/y" as x/y*10.
func normalizeRatingValue(raw string) (float64, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, false
	}

	if strings.HasSuffix(value, "%") {
		num, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return 0, false
		}
		return num / 10, true
	}

	if strings.Contains(value, "/") {
		parts := strings.SplitN(value, "/", 2)
		if len(parts) != 2 {
			return 0, false
		}
		numerator, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		denominator, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil || denominator == 0 {
			return 0, false
		}
		if denominator == 10 {
			return numerator, true
		}
		if denominator == 100 {
			return numerator / 10, true
		}
		return (numerator / denominator) * 10, true
	}

	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return num, true
}
