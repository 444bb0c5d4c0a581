package config

// DefaultPlanTOML is the built-in plan: Go mobile bindings and the Flutter SDK.
// go and git are verified only; everything after them may assume both exist.
const DefaultPlanTOML = `[runner]
kind = "local"

[[tool]]
name = "go"

[[tool]]
name = "git"

[[tool]]
name = "flutter"
bin_dirs = ["$HOME/development/flutter/bin"]

[tool.install]
method = "git"
repo = "https://github.com/flutter/flutter.git"
branch = "stable"
dest = "$HOME/development/flutter"
post_install = [["flutter", "--version"]]

[[tool]]
name = "gomobile"
bin_dirs = ["$GOBIN"]

[tool.install]
method = "go"
module = "golang.org/x/mobile/cmd/gomobile"
version = "latest"
post_install = [["gomobile", "init"]]

[[tool]]
name = "gobind"
bin_dirs = ["$GOBIN"]

[tool.install]
method = "go"
module = "golang.org/x/mobile/cmd/gobind"
version = "latest"
`
