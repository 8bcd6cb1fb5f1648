// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/yuumi-shop/yuumi/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
