// Package args splits a wallpaperd command line into daemon options, the
// wallpaper path, and scene options.
//
// The grammar is positional: every `--key[=value]` token before the first
// non-option argument is a daemon option, the first non-option argument is
// the wallpaper path, and every `--key[=value]` token after it belongs to
// the scene. Unknown daemon options are not rejected here; the caller
// decides which keys it understands.
package args

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMultiplePaths is returned when more than one positional argument is given.
var ErrMultiplePaths = errors.New("args: more than one wallpaper path provided, see --help")

// Option is a single parsed --key=value token. A bare --key parses with an
// empty Value.
type Option struct {
	Key   string
	Value string
}

// Args is the parsed command line.
type Args struct {
	WallpaperPath string

	options      []Option
	sceneOptions []Option
}

// Parse splits argv (excluding the program name) into daemon options, the
// wallpaper path, and scene options.
func Parse(argv []string) (*Args, error) {
	a := &Args{}
	for _, arg := range argv {
		if strings.HasPrefix(arg, "--") {
			opt, err := splitOption(arg[2:])
			if err != nil {
				return nil, err
			}
			if a.WallpaperPath == "" {
				a.options = append(a.options, opt)
			} else {
				a.sceneOptions = append(a.sceneOptions, opt)
			}
			continue
		}
		if a.WallpaperPath != "" {
			return nil, ErrMultiplePaths
		}
		a.WallpaperPath = arg
	}
	return a, nil
}

// splitOption splits "key=value" on the single '='. More than one '=' in
// the token is malformed.
func splitOption(s string) (Option, error) {
	pos := -1
	for i, c := range s {
		if c != '=' {
			continue
		}
		if pos != -1 {
			return Option{}, fmt.Errorf("args: option '--%s' has multiple '='", s)
		}
		pos = i
	}
	if pos == -1 {
		return Option{Key: s}, nil
	}
	return Option{Key: s[:pos], Value: s[pos+1:]}, nil
}

// Option returns the value of the named daemon option. The second result
// reports whether the option was present at all, so a bare flag is
// distinguishable from an absent one.
func (a *Args) Option(name string) (string, bool) {
	for _, opt := range a.options {
		if opt.Key == name {
			return opt.Value, true
		}
	}
	return "", false
}

// Has reports whether the named daemon option was given.
func (a *Args) Has(name string) bool {
	_, ok := a.Option(name)
	return ok
}

// SceneOption returns the value of the named scene option.
func (a *Args) SceneOption(name string) (string, bool) {
	for _, opt := range a.sceneOptions {
		if opt.Key == name {
			return opt.Value, true
		}
	}
	return "", false
}

// SceneOptions returns the scene options in command-line order.
func (a *Args) SceneOptions() []Option {
	return a.sceneOptions
}
