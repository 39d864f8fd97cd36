package version

// go clean && go install \
//  -ldflags "-X github.com/dataux/sqliterelay/version.Version=${version} -X github.com/dataux/sqliterelay/version.VersionPublic=${VERSIONPUBLIC}"

// Version will be the latest tag + number of commits after the tag
var Version = "unset"

// VersionPublic is just the hash from the latest commit.
var VersionPublic = ""
