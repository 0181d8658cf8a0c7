// version.go - Versionsinformation fuer lorapatch
package version

var Version string = "0.1.0"
