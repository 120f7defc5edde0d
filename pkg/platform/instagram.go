package platform

import "github.com/sko/reframe/pkg/types"

type InstagramReel struct{}

func init() {
	Register(&InstagramReel{})
}

func (p *InstagramReel) GetName() string {
	return "instagram-reel"
}

func (p *InstagramReel) GetTargetSpec() types.TargetSpec {
	return types.TargetSpec{Width: 1080, Height: 1920}
}

func (p *InstagramReel) GetMaxDuration() int {
	return 90
}

func (p *InstagramReel) GetVideoBitrate() string {
	return "2M"
}

func (p *InstagramReel) GetOutputFormat() string {
	return "mp4"
}
