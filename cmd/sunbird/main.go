//  Copyright (c) 2018 Rackspace
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
//  implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sunbird-storage/sunbird/auditserver"
	"github.com/sunbird-storage/sunbird/common"
	"github.com/sunbird-storage/sunbird/common/fs"
	"github.com/sunbird-storage/sunbird/common/srv"
)

func findConfig(name string) string {
	configSearch := []string{
		fmt.Sprintf("/etc/sunbird/%s-auditor.conf", name),
		fmt.Sprintf("/etc/sunbird/%s-auditor.conf.d", name),
		fmt.Sprintf("/etc/sunbird/%s-auditor", name),
		fmt.Sprintf("/etc/swift/%s-server.conf", name),
		fmt.Sprintf("/etc/swift/%s-server.conf.d", name),
		fmt.Sprintf("/etc/swift/%s-server", name),
	}
	for _, config := range configSearch {
		if fs.Exists(config) {
			return config
		}
	}
	return ""
}

func auditorFlags(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name+" auditor", flag.ExitOnError)
	flags.String("c", findConfig(name), "Config file/directory to use")
	flags.String("l", "stdout", "Log location")
	flags.String("e", "stderr", "Error log location")
	flags.Bool("once", false, "Run one pass of the auditor")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "sunbird %s-auditor [ARGS]\n", name)
		fmt.Fprintf(os.Stderr, "  Run %s auditor\n", name)
		flags.PrintDefaults()
	}
	return flags
}

func main() {
	rand.Seed(time.Now().UTC().UnixNano())

	accountAuditorFlags := auditorFlags("account")
	containerAuditorFlags := auditorFlags("container")

	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Sunbird Usage")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
		accountAuditorFlags.Usage()
		fmt.Fprintln(os.Stderr)
		containerAuditorFlags.Usage()
	}

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "version":
		fmt.Println(common.Version)
	case "account-auditor":
		accountAuditorFlags.Parse(flag.Args()[1:])
		os.Exit(srv.RunDaemons(auditserver.NewAccountAuditor, accountAuditorFlags))
	case "container-auditor":
		containerAuditorFlags.Parse(flag.Args()[1:])
		os.Exit(srv.RunDaemons(auditserver.NewContainerAuditor, containerAuditorFlags))
	default:
		flag.Usage()
		os.Exit(1)
	}
}
