//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test. The renderer core is tested against a mock
// device, so no GPU is needed.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the tests of one package directory, e.g. mage test:pkg engine/renderer.
func (Test) Pkg(dir string) error {
	_, err := executeCmd("go", withArgs("test", "-v", "."), withDir(dir), withStream())
	return err
}
