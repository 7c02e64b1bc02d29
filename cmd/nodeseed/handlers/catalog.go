package handlers

import (
	"context"
	"fmt"
	"strconv"
)

// Images handles the images command.
func Images(ctx context.Context, opts *Options) error {
	s, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	images, err := s.handle.ListImages(ctx)
	if err != nil {
		return err
	}

	t := newTable("ID", "NAME", "ARCH", "DESCRIPTION")
	for _, img := range images {
		t.row(img.ID, img.Name, img.Architecture, img.Description)
	}
	return t.write(opts.out())
}

// Sizes handles the sizes command.
func Sizes(ctx context.Context, opts *Options) error {
	s, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer s.close()

	sizes, err := s.handle.ListSizes(ctx)
	if err != nil {
		return err
	}

	t := newTable("ID", "NAME", "CORES", "MEMORY", "DISK", "DESCRIPTION")
	for _, size := range sizes {
		t.row(size.ID, size.Name,
			strconv.Itoa(size.Cores),
			fmt.Sprintf("%g GB", size.MemoryGB),
			fmt.Sprintf("%d GB", size.DiskGB),
			size.Description)
	}
	return t.write(opts.out())
}
