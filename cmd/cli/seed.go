package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
)

// seedFile is the YAML layout accepted by "categories seed".
//
//	categories:
//	  - name: Annual
//	    default_annual_allocation: "24"
//	    max_carryover_days: 5
type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
}

type seedCategory struct {
	Name                    string `yaml:"name"`
	DefaultAnnualAllocation string `yaml:"default_annual_allocation"`
	AccrualRate             string `yaml:"accrual_rate"`
	MaxCarryoverDays        int    `yaml:"max_carryover_days"`
	Active                  *bool  `yaml:"active"`
}

func loadSeed(r io.Reader) ([]dto.CreateCategoryRequest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file seedFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, errors.New("seed file lists no categories")
	}

	requests := make([]dto.CreateCategoryRequest, 0, len(file.Categories))
	for i, c := range file.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("category %d: name is required", i+1)
		}
		allocation, err := decimal.NewFromString(c.DefaultAnnualAllocation)
		if err != nil {
			return nil, fmt.Errorf("category %q: invalid default_annual_allocation %q", c.Name, c.DefaultAnnualAllocation)
		}

		req := dto.CreateCategoryRequest{
			Name:                    c.Name,
			DefaultAnnualAllocation: allocation,
			MaxCarryoverDays:        c.MaxCarryoverDays,
			Active:                  c.Active,
		}
		if c.AccrualRate != "" {
			rate, err := decimal.NewFromString(c.AccrualRate)
			if err != nil {
				return nil, fmt.Errorf("category %q: invalid accrual_rate %q", c.Name, c.AccrualRate)
			}
			req.AccrualRate = &rate
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// seedCategories creates every category, treating an existing name as done.
func seedCategories(ctx context.Context, client *apiClient, out io.Writer, requests []dto.CreateCategoryRequest) error {
	var failed int
	for _, req := range requests {
		var created dto.CategoryResponse
		status, err := client.do(ctx, http.MethodPost, "/api/v1/categories/", req, "category-seed:"+req.Name, &created)
		switch {
		case err == nil:
			fmt.Fprintf(out, "created  %s (%s)\n", req.Name, created.ID)
		case status == http.StatusConflict:
			fmt.Fprintf(out, "exists   %s\n", req.Name)
		default:
			failed++
			fmt.Fprintf(out, "failed   %s: %v\n", req.Name, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d categories failed", failed, len(requests))
	}
	return nil
}
