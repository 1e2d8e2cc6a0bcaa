// Package trainer provides the training orchestration for the progressive
// StyleGAN: the adversarial step functions, the resolution growth schedule
// with alpha blending, EMA weight shadowing, and resumable checkpointing
// across resolution phases.
package trainer
