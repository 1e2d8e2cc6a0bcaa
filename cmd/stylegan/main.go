package main

import "flag"
import "os"

import "github.com/neurlang/stylegan/config"
import "github.com/neurlang/stylegan/datasets"
import "github.com/neurlang/stylegan/datasets/mnist"
import "github.com/neurlang/stylegan/device"
import "github.com/neurlang/stylegan/device/cu"
import "github.com/neurlang/stylegan/inference"
import "github.com/neurlang/stylegan/trainer"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the run configuration")
	checkpoint := flag.String("checkpoint", "", "checkpoint artifact to resume from or sample with")
	outDir := flag.String("out", ".", "output directory for inference grids")
	flag.Parse()

	mode := flag.Arg(0)
	if mode == "" {
		mode = "train"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err.Error())
	}

	switch mode {
	case "train":
		train(cfg, *checkpoint)
	case "inference":
		infer(cfg, *checkpoint, *outDir)
	default:
		println("unknown run mode:", mode)
		os.Exit(1)
	}
}

func train(cfg *config.Config, checkpoint string) {
	var dev device.Device
	if cfg.Device == "cuda" {
		acc, err := cu.New(0)
		if err != nil {
			panic(err.Error())
		}
		dev = acc
		println("device:", acc.Name())
	} else {
		dev = device.Host{}
	}

	p := provider(cfg)
	t, err := trainer.New(cfg, p, dev)
	if err != nil {
		panic(err.Error())
	}
	if err := t.Run(checkpoint); err != nil {
		panic(err.Error())
	}
}

func infer(cfg *config.Config, checkpoint, outDir string) {
	if checkpoint == "" {
		println("inference needs -checkpoint")
		os.Exit(1)
	}
	inf, err := inference.New(cfg, checkpoint)
	if err != nil {
		panic(err.Error())
	}
	path, err := inf.Inference(8, outDir)
	if err != nil {
		panic(err.Error())
	}
	println("wrote", path)
}

func provider(cfg *config.Config) datasets.Provider {
	switch cfg.Dataset {
	case "mnist":
		p, err := mnist.New(cfg.DatasetDir)
		if err != nil {
			panic(err.Error())
		}
		return p
	case "synthetic":
		return datasets.NewSynthetic(4096, 32, cfg.ImgChannels)
	default:
		panic("unknown dataset: " + cfg.Dataset)
	}
}
