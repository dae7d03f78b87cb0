//go:build fuse

// Command litefsmount mounts a littlefs image file at a host directory using
// FUSE.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/embeddedkv/litefs"
	"github.com/embeddedkv/litefs/internal/blockdev"
)

func main() {
	image := flag.String("image", "", "path to the littlefs image file")
	blockCount := flag.Uint("block-count", 1024, "block count")
	flag.Parse()

	if *image == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: litefsmount -image FILE MOUNTPOINT")
		os.Exit(2)
	}
	mountpoint := flag.Arg(0)

	opts := litefs.DefaultOptions()
	dev, err := blockdev.OpenFileDevice(*image, uint32(*blockCount), opts.BlockSize, false)
	if err != nil {
		log.Fatalf("litefsmount: open %s: %v", *image, err)
	}
	defer dev.Close()

	ctx := context.Background()
	fsys, err := litefs.Connect(ctx, dev, opts)
	if err != nil {
		log.Fatalf("litefsmount: connect: %v", err)
	}
	defer fsys.Close()

	root := &litefsNode{fsys: fsys, path: "/"}
	server, err := fs.Mount(mountpoint, root, &fs.Options{})
	if err != nil {
		log.Fatalf("litefsmount: mount %s: %v", mountpoint, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		server.Unmount()
	}()

	server.Wait()
}
