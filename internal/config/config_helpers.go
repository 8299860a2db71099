package config

import "time"

func setString(target *string, fallback string) {
	if *target == "" {
		*target = fallback
	}
}

func setInt(target *int, fallback int) {
	if *target == 0 {
		*target = fallback
	}
}

// setDuration parses fallback at startup; the constants above are compile-time
// literals, so a parse failure is a programming error and panics.
func setDuration(target *time.Duration, fallback string) {
	if *target != 0 {
		return
	}
	d, err := time.ParseDuration(fallback)
	if err != nil {
		panic("config: bad default duration " + fallback)
	}
	*target = d
}
