package common

import (
	"fmt"

	"resumeguard/internal/errors"
	"resumeguard/internal/types"

	"github.com/spf13/viper"
)

// LoadProfile reads structured resume data from a json or yaml file.
// An empty path means no profile.
func LoadProfile(path string) (*types.Profile, error) {
	if path == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.NewValidationError("INVALID_PROFILE",
			fmt.Sprintf("Cannot read profile %s", path), err)
	}

	var profile types.Profile
	if err := v.Unmarshal(&profile); err != nil {
		return nil, errors.NewValidationError("INVALID_PROFILE",
			fmt.Sprintf("Cannot parse profile %s", path), err)
	}
	return &profile, nil
}
